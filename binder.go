package gpameta

import (
	"log/slog"
)

// Scanner turns models into entity classes. Each storage adapter provides one.
type Scanner interface {
	Scan(models ...any) ([]*EntityClass, error)
}

// Bind runs one binding pass: it scans the models, translates every class
// into a source set and freezes it. Attributes of every source are
// enumerated once so unsupported mappings fail the pass instead of a later
// read.
func Bind(scanner Scanner, models ...any) (*SourceSet, error) {
	if scanner == nil {
		return nil, NewError(ErrorTypeInvalidArgument, "scanner is required")
	}

	classes, err := scanner.Scan(models...)
	if err != nil {
		return nil, err
	}

	set := NewSourceSet()
	for _, class := range classes {
		if _, err := set.Translate(class); err != nil {
			return nil, err
		}
	}
	if err := set.Freeze(); err != nil {
		return nil, err
	}

	for _, src := range set.Sources() {
		attrs, err := src.AttributeSources()
		if err != nil {
			return nil, err
		}
		slog.Debug("bound entity",
			"entity", src.EntityName(),
			"table", src.PrimaryTable().QualifiedName(),
			"attributes", len(attrs),
			"subclasses", len(src.SubclassSources()),
		)
	}
	return set, nil
}
