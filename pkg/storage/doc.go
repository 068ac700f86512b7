// Package storage decides where downloaded files go and writes them.
//
// Paths are built from two templates in the output configuration: a
// directory pattern such as "{category}/{username}" and a file name pattern
// such as "{id}_{num}.{extension}". Each {key} is replaced with the matching
// message field. Values are sanitized so a field can never introduce an
// extra path segment.
//
// Writes go to a ".part" file first and are renamed into place, so an
// interrupted download never leaves a truncated file under the final name.
//
// Usage:
//
//	manager, err := storage.NewManager(cfg.Output)
//	if err != nil {
//	    return err
//	}
//	path, err := manager.Path(fields)
//	if err != nil {
//	    return err
//	}
//	if !manager.Exists(path) {
//	    _, err = manager.Save(body, path)
//	}
package storage
