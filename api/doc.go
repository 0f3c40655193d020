/*
Package api holds the wire types and server configuration shared by the
gateway HTTP server and its clients.

Every successful response is wrapped in a {"data": ...} envelope and every
failure in {"error": {"kind": ..., "message": ...}}, where kind is one of
UploadFailed, FetchFailed, ConfigurationError or ValidationError.

# Routes

	GET  /         status, {"data":"Server is up"}
	POST /file     multipart upload (field "file"), {"data":{"cid":...}}
	POST /record   JSON record upload, {"data":{"cid":...}}
	GET  /file     ?hash=<cid>, {"data":{"data":"<base64>"}}
	GET  /record   ?hash=<cid>, {"data":{"data":<record>}}
	POST /records  {"hashes":[...]}, {"data":{"data":[<record>...]}}
	POST /files    {"hashes":[...]}, {"data":{"data":["<base64>"...]}}

The clients subpackage implements a typed client for these routes.
*/
package api
