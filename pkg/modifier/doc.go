/*
Package modifier holds the registry of named value transforms that templates
apply with pipe syntax, as in {{ $title|trim|upper }}.

Each modifier carries a priority and an escaping flag. A chain is reordered by
priority before it runs, so authors can list modifiers in any order, and names
that are not registered are skipped rather than reported.
*/
package modifier
