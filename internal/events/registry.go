package events

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Factory восстанавливает обработчик из аргументов отложенного вызова.
type Factory func(args json.RawMessage) (Handler, error)

// Registry — неизменяемый реестр обработчиков по имени.
// Строится один раз при старте и передаётся по ссылке.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry возвращает реестр со всеми обработчиками ядра.
func NewRegistry() *Registry {
	simple := func(h Handler) Factory {
		return func(json.RawMessage) (Handler, error) { return h, nil }
	}

	return &Registry{factories: map[string]Factory{
		NameStartNode:               simple(StartNode{}),
		NameClientProcessing:        simple(ClientProcessing{}),
		NameClientComplete:          simple(ClientComplete{}),
		NameMarkChildrenReady:       simple(MarkChildrenReady{}),
		NameScheduleNextNode:        simple(ScheduleNextNode{}),
		NameNodeComplete:            simple(NodeComplete{}),
		NameRetryNode:               simple(RetryNode{}),
		NameDeactivatePreviousNodes: simple(DeactivatePreviousNodes{}),
		NameResetNode:               simple(ResetNode{}),
		NameServerError: func(args json.RawMessage) (Handler, error) {
			a, err := parseErrorArgs(args)
			if err != nil {
				return nil, err
			}
			return ServerError{Response: a.Response}, nil
		},
		NameClientError: func(args json.RawMessage) (Handler, error) {
			a, err := parseErrorArgs(args)
			if err != nil {
				return nil, err
			}
			return ClientError{Response: a.Response}, nil
		},
	}}
}

// Build создаёт обработчик по имени и аргументам.
func (r *Registry) Build(name string, args json.RawMessage) (Handler, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}
	return factory(args)
}

// Names возвращает имена всех обработчиков в алфавитном порядке.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func parseErrorArgs(args json.RawMessage) (errorArgs, error) {
	var a errorArgs
	if len(args) == 0 {
		return a, nil
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return a, fmt.Errorf("parse handler args: %w", err)
	}
	return a, nil
}
