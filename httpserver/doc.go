/*
Package httpserver serves a fallback storage over HTTP.

File names are taken from the URL path after the route prefix, so nested
names like photos/2024/cat.jpg need no escaping.

# Endpoints

  - GET /api/files/{name} - Stream file content from the first backend holding it
  - PUT /api/files/{name} - Store the request body, responds with the stored name
  - DELETE /api/files/{name} - Delete from the first backend that succeeds
  - HEAD /api/files/{name} - 200 if any backend holds the file, 404 otherwise
  - GET /api/stat/{name} - Size, access/creation/modification times and URL
  - GET /api/list/{dir} - Directories and files across all backends
  - GET /api/url/{name} - Public URL of the file
  - GET /api/path/{name} - Local filesystem path of the file
  - GET /api/names/valid?name= - Normalized file name
  - GET /api/names/available?name= - Name that is free in every backend
  - GET /livez, /readyz, /drain, /undrain - Health and draining

# Error Responses

  - 400 Bad Request: missing or invalid file name
  - 404 Not Found: no backend holds the file
  - 409 Conflict: backends did not agree on an available name
  - 413 Request Entity Too Large: upload exceeds the body limit
  - 501 Not Implemented: no backend supports the operation
  - 502 Bad Gateway: backends failed or were unavailable
  - 500 Internal Server Error: anything else

The text body of an error response is the storage error, which for a
multi-backend failure lists one "location: error" line per backend.
*/
package httpserver
