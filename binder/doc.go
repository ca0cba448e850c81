// Package binder decodes HTTP request bodies into typed request structs.
//
// JSON handles application/json bodies strictly. Multipart handles
// multipart/form-data with `form:"..."` text fields and `file:"..."`
// upload fields, enforcing a per-file size limit and sniffing the real
// content type of each upload.
package binder
