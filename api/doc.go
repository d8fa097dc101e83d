/*
Package api holds the JSON types exchanged between the fallback storage HTTP
server (package httpserver) and its Go client (package api/clients).

File content itself is never wrapped in JSON: uploads and downloads are raw
request and response bodies. Errors are plain text with a status code, see
package httpserver for the mapping.
*/
package api
