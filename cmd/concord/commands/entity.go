package commands

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/concord/internal/app"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/ui/output"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

func (c *CLI) newWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <type> <id> [file|-]",
		Short: "Commit a new version of an entity and propagate it",
		Long: "Commit a new version of an entity and propagate it.\n\n" +
			"The payload is a JSON or YAML object read from file, or from stdin when file is omitted or \"-\".",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := entityArgs(args)
			if err != nil {
				return err
			}
			src := "-"
			if len(args) == 3 {
				src = args[2]
			}
			payload, err := readPayload(cmd.InOrStdin(), src)
			if err != nil {
				return err
			}

			res, err := c.app.WriteEntity(cmd.Context(), t, id, payload)
			if err != nil {
				return err
			}
			printWrite(c.printer(cmd), "committed", res)
			return nil
		},
	}
}

func (c *CLI) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an entity and remove it from every derived store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := entityArgs(args)
			if err != nil {
				return err
			}
			res, err := c.app.DeleteEntity(cmd.Context(), t, id)
			if err != nil {
				return err
			}
			printWrite(c.printer(cmd), "deleted", res)
			return nil
		},
	}
}

func (c *CLI) newReadCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "read <type> <id>",
		Short: "Read an entity through the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := entityArgs(args)
			if err != nil {
				return err
			}
			res, err := c.app.ReadEntity(cmd.Context(), t, id)
			if err != nil {
				return err
			}
			return writeRead(cmd.OutOrStdout(), format, res)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format: yaml or json")

	return cmd
}

func (c *CLI) newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <type> <id>",
		Short: "Drop the cached copy of an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := entityArgs(args)
			if err != nil {
				return err
			}
			if err := c.app.Invalidate(cmd.Context(), t, id); err != nil {
				return err
			}
			c.printer(cmd).Success("invalidated %s:%s", t, id)
			return nil
		},
	}
}

func readPayload(stdin io.Reader, src string) (domain.Payload, error) {
	var (
		b   []byte
		err error
	)
	if src == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "read payload"), "source", src)
	}

	payload := domain.Payload{}
	if strings.TrimSpace(string(b)) == "" {
		return payload, nil
	}
	if err := yaml.Unmarshal(b, &payload); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidPayload, "parse payload: "+err.Error()), "source", src)
	}
	return payload, nil
}

func printWrite(p *output.Printer, verb string, res app.WriteResult) {
	p.Success("%s %s at version %d", res.Key, verb, res.Version)
	for _, role := range domain.DerivedRoles {
		if o, ok := res.Propagation[role]; ok {
			p.Outcome(role, o)
		}
	}
}

type readDocument struct {
	Key        string         `json:"key" yaml:"key"`
	Version    int64          `json:"version" yaml:"version"`
	ServedFrom string         `json:"served_from" yaml:"served_from"`
	Payload    domain.Payload `json:"payload" yaml:"payload"`
}

func writeRead(w io.Writer, format string, res app.ReadResult) error {
	doc := readDocument{
		Key:        res.Key.String(),
		Version:    int64(res.Version),
		ServedFrom: string(res.ServedFrom),
		Payload:    res.Payload,
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return zerr.With(zerr.Wrap(domain.ErrUnsupportedFormat, "render read"), "format", format)
	}
}
