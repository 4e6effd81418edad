/*
Package compiler translates template source into executable Programs.

Compilation runs in three stages. The lexer splits the source into text runs
and tag tokens, consuming quoted literals whole. The parser builds a syntax
tree and rejects unbalanced control tags with a SyntaxError carrying the line
and column. The generator flattens the tree into a Program: a list of ops
with resolved jump targets, interpolations annotated with their ordered
modifier chain and escape mode, and loops tagged with stable ids.

A Program never evaluates anything itself. The templating package executes it
against a scope.

Supported syntax:

	{{ $user.name|upper }}          escaped interpolation with modifiers
	{{ $html|raw }}                 unescaped interpolation
	{{{ $comment }}}                double-escaped, newlines become <br />
	{{ greeting }}                  language string lookup
	{{ add($a, 1) }}                function call
	{% if $a > 1 %}..{% elseif $b %}..{% else %}..{% endif %}
	{% foreach $items as $i => $item %}..{% endforeach %}
	{% include "partials/header" %}
	{# comment #}
*/
package compiler
