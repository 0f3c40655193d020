/*
Package clients provides a typed client for the gateway HTTP API.

GatewayClient wraps every gateway route:

  - Status - GET /
  - UploadFile - POST /file (multipart)
  - UploadRecord - POST /record
  - GetFile - GET /file, base64 decoded
  - GetRecord - GET /record
  - GetRecords - POST /records
  - GetFiles - POST /files, base64 decoded

Error responses are returned as *RequestError carrying the HTTP status and
the gateway error kind:

	_, err := client.GetRecord(ctx, cid)
	var reqErr *clients.RequestError
	if errors.As(err, &reqErr) && reqErr.Kind == "FetchFailed" {
		// content is not retrievable from the configured backend
	}
*/
package clients
