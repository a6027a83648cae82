// Package links turns free-text input lines into typed [models.Link] values.
//
// Parsing and reading are separate phases. [ParseLine] is pure: it scans one line for
// "<kind>/<id>" or "<kind>:<id>" and reports whether a supported link, an unsupported
// link or nothing was found. [Reader] drives a line source (normally stdin), stops at a
// line equal to "done" or at EOF, and tolerates read errors line by line.
package links
