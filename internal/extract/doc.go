// Package extract turns free-form appointment-request messages into
// structured records using ordered pattern tables. There is no learned
// model anywhere in this package: every field is recognized by an
// explicit, testable list of patterns or keywords, and every miss
// degrades to a documented default instead of an error.
package extract
