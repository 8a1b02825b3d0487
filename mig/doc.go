/*
Package mig provides schema and data migration for the otab domain model.

Schema versions are plain dom schemas loaded from different files or repository
checkouts. A mapping relates the models and fields of two adjacent versions, built
from explicit renames and same-name matching, and is checked for structural
consistency before any data is touched. Instances migrate in two phases: values are
copied into fresh objects of the new version and relationship edges are relinked
through transient scratch edges afterwards.

A spec describes migrating dataset files over a whole sequence of schema versions;
the pipeline threads each file's instances through one step per adjacent pair.
Change records stored in a schema repository make the same information available per
commit, which lets the batch driver migrate files automatically to the repository
head.
*/
package mig
