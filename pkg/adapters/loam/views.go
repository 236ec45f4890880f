package loam

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/aretw0/loam"
)

// ViewMetadata represents the frontmatter of a template document.
// All fields are optional; the directory layout supplies the defaults.
type ViewMetadata struct {
	// View overrides the view the template belongs to (instead of the
	// directory convention).
	View string `json:"view" mapstructure:"view"`
	// Action overrides the template name (instead of the filename).
	Action string `json:"action" mapstructure:"action"`
	// Layout names an enclosing layout. Informational for now.
	Layout string `json:"layout" mapstructure:"layout"`
}

// Resolver adapts a Loam repository to the ViewResolver port. Templates are
// markdown documents laid out one directory per view: "ArticlesView" maps to
// "articles_view/", and "articles_view/index.md" is the template for the
// "index" action.
type Resolver struct {
	Repo *loam.TypedRepository[ViewMetadata]
}

// New creates a new Loam view resolver.
func New(repo *loam.TypedRepository[ViewMetadata]) *Resolver {
	return &Resolver{
		Repo: repo,
	}
}

// Resolve returns the view for the given identifier, or
// domain.ErrViewNotFound when no template belongs to it.
func (r *Resolver) Resolve(ctx context.Context, view string) (ports.View, error) {
	index, err := r.index(ctx)
	if err != nil {
		return nil, err
	}

	templates, ok := index[view]
	if !ok {
		return nil, fmt.Errorf("view '%s': %w", view, domain.ErrViewNotFound)
	}

	return &View{
		repo:      r.Repo,
		name:      view,
		templates: templates,
	}, nil
}

// Views lists all view identifiers present in the repository.
func (r *Resolver) Views(ctx context.Context) ([]string, error) {
	index, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	return names, nil
}

// index maps view identifier -> template name -> document ID.
// Explicit frontmatter (view, action) wins over the directory convention.
func (r *Resolver) index(ctx context.Context) (map[string]map[string]string, error) {
	docs, err := r.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	index := make(map[string]map[string]string)
	for _, doc := range docs {
		id := trimExtension(doc.ID)

		view := doc.Data.View
		if view == "" {
			dir := path.Dir(id)
			if dir == "." {
				// Top-level documents belong to no view.
				continue
			}
			view = viewFromDir(path.Base(dir))
		}

		action := doc.Data.Action
		if action == "" {
			action = path.Base(id)
		}

		templates, ok := index[view]
		if !ok {
			templates = make(map[string]string)
			index[view] = templates
		}
		if existing, dup := templates[action]; dup {
			return nil, fmt.Errorf("collision detected: template '%s' of view '%s' is defined in both '%s' and '%s'", action, view, existing, doc.ID)
		}
		templates[action] = id
	}
	return index, nil
}

// View is a resolved group of templates backed by a Loam directory.
type View struct {
	repo      *loam.TypedRepository[ViewMetadata]
	name      string
	templates map[string]string
}

// Template returns the template body for the given name.
func (v *View) Template(ctx context.Context, name string) (string, error) {
	docID, ok := v.templates[name]
	if !ok {
		return "", fmt.Errorf("template '%s' of view '%s': %w", name, v.name, domain.ErrViewNotFound)
	}

	// Loam resolves "articles_view/index" to articles_view/index.md itself.
	doc, err := v.repo.Get(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("loam get failed for %s: %w", docID, err)
	}
	return doc.Content, nil
}

// Templates lists the template names of the view.
func (v *View) Templates() []string {
	names := make([]string, 0, len(v.templates))
	for name := range v.templates {
		names = append(names, name)
	}
	return names
}

// ViewDir converts a view identifier to its directory name:
// "ArticlesView" becomes "articles_view".
func ViewDir(view string) string {
	var b strings.Builder
	b.Grow(len(view) + 4)
	for i, r := range view {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// viewFromDir inverts ViewDir: "articles_view" becomes "ArticlesView".
func viewFromDir(dir string) string {
	parts := strings.Split(dir, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
