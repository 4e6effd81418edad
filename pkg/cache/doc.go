// Package cache stores compiled templates and decides when a template has to
// be compiled again.
//
// Artifacts are named by a Key built from the theme, layout, template name,
// device class, configuration fingerprint and a fixed tag:
//
//	default-main-index-desktop-3f9a-compiled.tplc
//
// Any change to one of those parts produces a different artifact, so renders
// for different devices or configurations never share compiled output.
//
// By default an existing artifact is reused until it is removed. Development
// mode recompiles on every load, and CheckModTime recompiles when the source
// file is newer than its artifact. Writes go through Storage.WriteFile, which
// replaces the artifact atomically; concurrent renderers racing to compile
// the same template simply write identical bytes.
package cache
