// Package validate implements the request validation stage: size and
// content-type checks, required headers and fields, and a field rule
// engine. Violations are collected and returned together rather than
// failing on the first. Valid requests get a sanitized copy of their
// body attached to the pipeline context.
package validate
