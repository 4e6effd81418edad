/*
Package lang stores the language strings templates refer to with bare
identifiers such as {{ core.welcome_title }}.

Strings are grouped in packs, usually one per language, and kept in SQLite.
Packs are loaded from YAML files where nested mappings are flattened into
dotted keys:

	core:
	  welcome_title: Welcome
	  footer: "© Example"

A Table built with Store.Table holds a snapshot of one or more packs in
memory and is what a renderer consults while rendering.
*/
package lang
