// Package transform implements the image transforms a pipeline is composed
// of, together with the parameter metadata the UI needs to render sliders
// and toggles for them.
//
// Built-in transforms operate on the standard library image types and
// declare their parameter specifications explicitly; the registry lets a
// pipeline definition instantiate transforms by name. Transforms are owned
// by a single viewer and are not safe for concurrent mutation.
package transform
