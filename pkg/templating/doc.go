/*
Package templating renders templates written in the Nepenthes template
language.

A Renderer reads template sources from a directory, compiles each one on
first use and stores the compiled form through the cache package, keyed by
theme, layout, template name, device class and configuration fingerprint.
Later renders execute the stored form directly until it becomes stale.

	r, err := templating.NewRenderer(logger, cfg)
	if err != nil {
		return err
	}
	r.AddVar("site", "Example")
	out, err := r.Render("index", map[string]any{"count": 3})

Every render runs in its own scope holding the shared variables plus the ones
passed to Render. Includes share the scope of the template that includes
them; loops shadow their variables and restore them when they end.

Bare identifiers such as {{ core.title }} are looked up in the Translator set
with WithTranslator, and render as the key itself when missing. Functions are
called by name; the defaults cover integer arithmetic (add, sub, mult, div,
mod, min, max, inc, dec), logic (and, or, not, isSet, default) and
collections (list, repeat, count, join, randomChoice, randomInt). AddFunction
registers more.
*/
package templating
