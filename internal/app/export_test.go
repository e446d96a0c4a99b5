package app

import "go.trai.ch/concord/internal/adapters/storage"

// OpenStores exposes the stores of an opened App.
func (a *App) OpenStores() *storage.Stores {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rt == nil {
		return nil
	}
	return a.rt.stores
}
