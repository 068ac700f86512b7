package article

import (
	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
)

const (
	moduleTypeKey     = "module_type"
	moduleTypeBlocked = "MODULE_TYPE_BLOCKED"

	ModuleAuthor  = "module_author"
	ModuleContent = "module_content"
	ModuleTop     = "module_top"
	ModuleBlocked = "module_blocked"
)

// Modules maps a module's semantic name (module_author, module_content, ...)
// to its payload.
type Modules map[string]interface{}

// Flatten folds an ordered module list into a single mapping. The
// module_type marker of every entry is dropped and later entries overwrite
// earlier ones on key collisions. A blocked module is reported as a warning
// and otherwise flattened like any other.
//
// The input entries are not modified.
func Flatten(articleID string, modules []interface{}, log logger.Logger) (Modules, error) {
	flat := make(Modules, len(modules))

	for i, m := range modules {
		module, ok := m.(map[string]interface{})
		if !ok {
			return nil, errs.Abortf("%s: module %d is not an object", articleID, i)
		}

		if t, _ := module[moduleTypeKey].(string); t == moduleTypeBlocked {
			var hint interface{}
			if blocked, ok := module[ModuleBlocked].(map[string]interface{}); ok {
				hint = blocked["hint_message"]
			}
			log.WarnWithFields("blocked article", map[string]interface{}{
				"id":   articleID,
				"hint": hint,
			})
		}

		for key, payload := range module {
			if key == moduleTypeKey {
				continue
			}
			flat[key] = payload
		}
	}

	return flat, nil
}

// List returns the flattened modules as a one-element module list, the form
// Flatten accepts.
func (m Modules) List() []interface{} {
	return []interface{}{map[string]interface{}(m)}
}

// object returns modules[key] when it is a JSON object.
func (m Modules) object(key string) (map[string]interface{}, bool) {
	v, ok := m[key].(map[string]interface{})
	return v, ok
}
