// Package mocks provides shared mock implementations for unit testing the
// task workflow. Mocks favour configurable function fields plus call
// recording over code generation.
package mocks
