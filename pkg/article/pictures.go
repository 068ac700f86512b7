package article

import (
	errs "opusdl/pkg/errors"
)

// Picture is one picture descriptor as the API returned it: url, width,
// height, size and whatever else it carries.
type Picture map[string]interface{}

// URL returns the picture's url field, if it is a string.
func (p Picture) URL() (string, bool) {
	u, ok := p["url"].(string)
	return u, ok && u != ""
}

// CollectPictures gathers pictures from the top album first, then from each
// content paragraph in document order. A malformed album or paragraph
// contributes nothing and does not affect the others. A content module
// without a paragraph list is an error.
func CollectPictures(articleID string, modules Modules) ([]Picture, error) {
	var pics []Picture

	if top, ok := modules.object(ModuleTop); ok {
		pics = append(pics, picsAt(top, "display", "album", "pics")...)
	}

	if _, present := modules[ModuleContent]; present {
		content, _ := modules.object(ModuleContent)
		paragraphs, ok := content["paragraphs"].([]interface{})
		if !ok {
			return nil, errs.Abortf("%s: module_content has no paragraphs", articleID)
		}
		for _, p := range paragraphs {
			paragraph, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if _, hasPic := paragraph["pic"]; !hasPic {
				continue
			}
			pics = append(pics, picsAt(paragraph, "pic", "pics")...)
		}
	}

	return pics, nil
}

// picsAt follows path through nested objects and returns the list of
// picture objects at its end. Any mismatch on the way yields nil.
func picsAt(root map[string]interface{}, path ...string) []Picture {
	var node interface{} = root
	for _, key := range path {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		if node, ok = obj[key]; !ok {
			return nil
		}
	}

	list, ok := node.([]interface{})
	if !ok {
		return nil
	}
	pics := make([]Picture, 0, len(list))
	for _, item := range list {
		pic, ok := item.(map[string]interface{})
		if !ok {
			return nil
		}
		pics = append(pics, Picture(pic))
	}
	return pics
}
