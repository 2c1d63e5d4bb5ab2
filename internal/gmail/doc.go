// Package gmail fetches single messages from the Gmail API for scheduling
// detection.
//
// Only read access is used. A Message carries the headers and a plain-text
// body: the text/plain part when present, otherwise the text/html part
// with tags stripped, otherwise the API snippet.
package gmail
