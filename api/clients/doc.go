/*
Package clients provides a Go client for the fallback storage HTTP API.

StorageClient implements the same capability interfaces as the storage
backends, so it can be used directly or listed as a remote:// location in
another fallback storage, letting one server fall back to another.

Status codes are translated back into the storage sentinel errors:

  - 404 becomes interfaces.ErrContentNotFound
  - 400 becomes interfaces.ErrInvalidName
  - 501 becomes interfaces.ErrUnsupported
  - 502, 503 and 504 become interfaces.ErrBackendUnavailable

# Example Usage

	client := clients.NewStorageClient("http://media.internal:8080", nil, logger)

	name, err := client.Save(ctx, "photos/cat.jpg", file)
	rc, err := client.Open(ctx, name)
	url, err := client.URL(ctx, name)
*/
package clients
