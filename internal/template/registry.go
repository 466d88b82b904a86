package template

import (
	"embed"
	"fmt"
	"image"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/Gowithe/scangrade-thai/internal/answerkey"
)

//go:embed templates/*.json
var embedded embed.FS

// Embedded returns the template files compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return sub
}

// Layout describes a sheet layout and where its slot coordinates live.
type Layout struct {
	Name          string
	QuestionCount int
	File          string
	Header        image.Rectangle
}

// DefaultLayouts are the supported answer sheets.
var DefaultLayouts = []Layout{
	{Name: "60", QuestionCount: 60, File: "questions_60.json", Header: image.Rect(100, 150, 1500, 450)},
	{Name: "80", QuestionCount: 80, File: "questions_80.json", Header: image.Rect(100, 150, 1500, 450)},
}

type entry struct {
	once sync.Once
	tpl  *Template
	err  error
}

// Registry loads templates on first use and caches them, including load
// failures, for the life of the process.
//
// Each template is loaded at most once even under concurrent first access:
// the first caller loads it while the others wait for the result.
type Registry struct {
	fsys    fs.FS
	layouts map[string]Layout
	entries map[string]*entry
}

// NewRegistry creates a registry reading template files from fsys. When no
// layouts are given DefaultLayouts are used. A nil fsys selects the embedded
// templates.
func NewRegistry(fsys fs.FS, layouts ...Layout) *Registry {
	if fsys == nil {
		fsys = Embedded()
	}
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	r := &Registry{
		fsys:    fsys,
		layouts: make(map[string]Layout, len(layouts)),
		entries: make(map[string]*entry, len(layouts)),
	}
	for _, l := range layouts {
		r.layouts[l.Name] = l
		r.entries[l.Name] = &entry{}
	}
	return r
}

// NewDirRegistry creates a registry reading template files from dir, or from
// the embedded templates when dir is empty.
func NewDirRegistry(dir string, layouts ...Layout) *Registry {
	if dir == "" {
		return NewRegistry(nil, layouts...)
	}
	return NewRegistry(os.DirFS(dir), layouts...)
}

// Names returns the known layout names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layout returns the layout registered under name.
func (r *Registry) Layout(name string) (Layout, bool) {
	l, ok := r.layouts[name]
	return l, ok
}

// Get returns the template for name, loading it on first use.
func (r *Registry) Get(name string) (*Template, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown layout %q", ErrTemplateNotFound, name)
	}
	e.once.Do(func() {
		e.tpl, e.err = r.load(r.layouts[name])
	})
	return e.tpl, e.err
}

// LoadAll loads the named templates, or every layout when names is empty, and
// returns the first error.
func (r *Registry) LoadAll(names ...string) error {
	if len(names) == 0 {
		names = r.Names()
	}
	for _, name := range names {
		if _, err := r.Get(name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) load(l Layout) (*Template, error) {
	f, err := r.fsys.Open(l.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, l.File, err)
	}
	defer f.Close()

	slots, err := ReadSlots(f)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", l.Name, err)
	}

	options := answerkey.Options()
	mapping, err := BuildMapping(slots, l.QuestionCount, options)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", l.Name, err)
	}

	return &Template{
		Name:          l.Name,
		QuestionCount: l.QuestionCount,
		Options:       options,
		Slots:         slots,
		Mapping:       mapping,
		Header:        l.Header,
	}, nil
}
