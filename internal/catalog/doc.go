// Package catalog holds the data structures and algorithms reference
// content: an immutable Module -> Level -> Record mapping decoded once at
// startup from an embedded YAML document.
//
// A Store is never mutated after Load returns, so it is shared by reference
// across request goroutines without locking. Lookups are exact and
// case-sensitive on both keys; "stack" does not match "Stack".
//
// The embedded document is validated at load: every module must define all
// three levels, every record must carry the required fields, and no field
// may be null. A document that fails validation aborts startup.
package catalog
