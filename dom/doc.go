/*
Package dom provides a data-driven domain model for tabular object data.

A schema is a self-contained namespace of models. Models describe record types with
typed fields and field options, including relationships to other models in the same
schema. Schemas are declared as literal dicts in schema files and loaded with a
Loader; two loaded schema versions never share model tables, so old and new versions
of the same domain can coexist in one process.
*/
package dom
