// Package httputil provides shared HTTP response/request helpers for the
// dashboard API handlers. Every handler writes JSON through these helpers so
// the error envelope is the same everywhere.
package httputil
