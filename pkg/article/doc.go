// Package article assembles a bilibili opus article from its page state.
//
// The page state holds an ordered list of typed modules. Assemble flattens
// them into one mapping keyed by module name, reads the author from
// module_author and collects pictures from the top album and the content
// paragraphs. Record and Files then produce the directory record and the
// numbered file list handed to the download side.
package article
