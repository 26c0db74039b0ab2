// Package blockpatch ensures a directive lives inside a named block of a
// brace-delimited configuration file such as nginx.conf.
//
// Patch makes two passes over the document. The scan pass tracks brace depth
// across the whole file and locates the first line that opens the target
// block, either on the same line:
//
//	http {
//
// or with the brace on the following line:
//
//	http
//	{
//
// It records whether the directive pattern already matches a line inside the
// block, and which lines outside the block match it. The rewrite pass then
// comments out every outside occurrence, keeping the original text, and inserts
// the directive literal just before the block's closing line when it is
// missing.
//
// Braces are counted lexically. Comments and quoted strings containing braces
// are not special.
//
// Applying the same Directive twice is a no-op the second time:
//
//	d, _ := blockpatch.LookupPreset(blockpatch.DefaultPresetName)
//	dir, _ := d.Directive()
//	res, err := blockpatch.Patch(text, dir)
//	if blockpatch.IsStructural(err) {
//	    // http block missing or never closed; nothing was changed
//	}
package blockpatch
