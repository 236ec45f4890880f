package ports

import "context"

// View is a resolved view: a named group of templates, one per action.
type View interface {
	// Template returns the template body for the given name.
	// Returns domain.ErrViewNotFound if the template does not exist.
	Template(ctx context.Context, name string) (string, error)
}

// ViewResolver maps a view identifier (derived from the controller name by
// convention) to a View. Implementations decide where templates live:
// files, a loam repository, embedded assets.
type ViewResolver interface {
	// Resolve returns the view for the given identifier.
	// Returns domain.ErrViewNotFound if no such view exists.
	Resolve(ctx context.Context, view string) (View, error)
}
