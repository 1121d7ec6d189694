package store

import (
	"reflect"

	"github.com/grovetools/storybook/pkg/csf"
)

// Story is a story with project, component and story annotations merged.
type Story struct {
	ID          string
	Title       string
	Name        string
	ImportPath  string
	ExportName  string
	Kind        csf.ExportKind
	ComponentID string
	Component   any

	Parameters  csf.Parameters
	InitialArgs csf.Args
	ArgTypes    csf.ArgTypes
	// Decorators and Loaders run project first, then component, then story.
	Decorators []csf.DecoratorFunc
	Loaders    []csf.LoaderFunc
	Render     csf.RenderFunc
	Play       csf.PlayFunc
}

// DocsOnly reports whether the story only exists to show a docs page.
func (s *Story) DocsOnly() bool {
	v, _ := s.Parameters["docsOnly"].(bool)
	return v
}

// prepareStory merges the three annotation levels of one story.
func prepareStory(id, title, name, importPath string, named *csf.NamedStory,
	component *csf.ComponentAnnotations, project *csf.ProjectAnnotations) *Story {
	story := &named.Story

	initialArgs := csf.Args{}
	for _, args := range []csf.Args{project.Args, component.Args, story.Args} {
		for k, v := range args {
			initialArgs[k] = v
		}
	}

	argTypes := inferArgTypes(initialArgs)
	for _, declared := range []csf.ArgTypes{project.ArgTypes, component.ArgTypes, story.ArgTypes} {
		argTypes = mergeArgTypes(argTypes, declared)
	}

	render := story.Render
	if render == nil {
		render = component.Render
	}
	if render == nil {
		render = project.Render
	}
	play := story.Play
	if play == nil {
		play = component.Play
	}

	componentID := component.ID
	if componentID == "" {
		componentID = csf.Sanitize(title)
	}

	return &Story{
		ID:          id,
		Title:       title,
		Name:        name,
		ImportPath:  importPath,
		ExportName:  named.ExportName,
		Kind:        named.Kind,
		ComponentID: componentID,
		Component:   component.Component,
		Parameters:  csf.CombineParameters(project.Parameters, component.Parameters, story.Parameters),
		InitialArgs: Clone(initialArgs),
		ArgTypes:    argTypes,
		Decorators:  concat(project.Decorators, component.Decorators, story.Decorators),
		Loaders:     concat(project.Loaders, component.Loaders, story.Loaders),
		Render:      render,
		Play:        play,
	}
}

func concat[T any](lists ...[]T) []T {
	var out []T
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// mergeArgTypes overlays declared onto base field by field.
func mergeArgTypes(base, declared csf.ArgTypes) csf.ArgTypes {
	out := make(csf.ArgTypes, len(base)+len(declared))
	for k, v := range base {
		out[k] = v
	}
	for name, d := range declared {
		merged := out[name]
		merged.Name = name
		if d.Description != "" {
			merged.Description = d.Description
		}
		if d.Type != nil {
			merged.Type = d.Type
		}
		if d.DefaultValue != nil {
			merged.DefaultValue = d.DefaultValue
		}
		if d.Control != nil {
			merged.Control = d.Control
		}
		if d.Options != nil {
			merged.Options = d.Options
			if merged.Type == nil || merged.Type.Name != csf.TypeArray {
				merged.Type = &csf.SBType{Name: csf.TypeEnum, Value: d.Options}
			}
		}
		out[name] = merged
	}
	return out
}

// inferArgTypes derives an arg type from each initial value.
func inferArgTypes(args csf.Args) csf.ArgTypes {
	out := make(csf.ArgTypes, len(args))
	for name, value := range args {
		out[name] = csf.ArgType{Name: name, Type: inferType(value)}
	}
	return out
}

func inferType(v any) *csf.SBType {
	switch t := v.(type) {
	case string:
		return &csf.SBType{Name: csf.TypeString}
	case bool:
		return &csf.SBType{Name: csf.TypeBoolean}
	case int, int32, int64, float32, float64:
		return &csf.SBType{Name: csf.TypeNumber}
	case []any:
		if len(t) == 0 {
			return &csf.SBType{Name: csf.TypeArray, Value: &csf.SBType{Name: csf.TypeOther}}
		}
		return &csf.SBType{Name: csf.TypeArray, Value: inferType(t[0])}
	case map[string]any, csf.Args:
		obj, _ := asObject(t)
		fields := make(map[string]*csf.SBType, len(obj))
		for k, fv := range obj {
			fields[k] = inferType(fv)
		}
		return &csf.SBType{Name: csf.TypeObject, Value: fields}
	case nil:
		return &csf.SBType{Name: csf.TypeOther}
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return &csf.SBType{Name: csf.TypeFunction}
	}
	return &csf.SBType{Name: csf.TypeOther}
}

// Decorate wraps the story's render function in its decorators. The first
// decorator ends up outermost.
func Decorate(story *Story) csf.StoryFn {
	render := story.Render
	inner := func(sc *csf.StoryContext) (any, error) {
		if render == nil {
			return nil, nil
		}
		return render(sc.Args, sc)
	}
	fn := csf.StoryFn(inner)
	for i := len(story.Decorators) - 1; i >= 0; i-- {
		decorator := story.Decorators[i]
		next := fn
		fn = func(sc *csf.StoryContext) (any, error) {
			return decorator(next, sc)
		}
	}
	return fn
}
