package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/p4cket/reqpad/packages/request"
)

// buildBody produces the outgoing request body for a descriptor. It returns
// the body reader, a content type to apply, and whether that content type
// overrides an explicitly set header (multipart boundaries must win).
func buildBody(desc *request.Descriptor, files FileProvider) (io.Reader, string, bool, error) {
	switch desc.BodyMode {
	case request.BodyNone, "":
		return nil, "", false, nil

	case request.BodyJSON:
		if desc.BodyText == "" {
			return nil, "", false, nil
		}
		var js any
		if err := json.Unmarshal([]byte(desc.BodyText), &js); err != nil {
			return nil, "", false, newError(CodeBody, "invalid JSON body", err)
		}
		return strings.NewReader(desc.BodyText), "application/json", false, nil

	case request.BodyForm:
		if desc.BodyText == "" {
			return nil, "", false, nil
		}
		values := url.Values{}
		for _, p := range request.ParseKVText(desc.BodyText) {
			values.Set(p.Key, p.Value)
		}
		return strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", false, nil

	case request.BodyMultipart:
		if desc.BodyText == "" {
			return nil, "", false, nil
		}
		body, contentType, err := buildMultipart(desc.BodyText, files)
		if err != nil {
			return nil, "", false, err
		}
		return body, contentType, true, nil

	case request.BodyRaw:
		if up, ok := files.Open(RawBodyField); ok {
			return up.Reader, up.ContentType, false, nil
		}
		if desc.BodyText == "" {
			return nil, "", false, nil
		}
		return strings.NewReader(desc.BodyText), "", false, nil

	default:
		return nil, "", false, newError(CodeBody, fmt.Sprintf("unknown body mode %q", desc.BodyMode), nil)
	}
}

// buildMultipart turns key=value lines into a multipart form. A value
// beginning with @ names a field satisfied by an uploaded file; when no
// matching file was provided the literal value (including the @) is sent as a
// plain field instead of failing.
func buildMultipart(bodyText string, files FileProvider) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, p := range request.ParseKVText(bodyText) {
		if p.Key == "" {
			continue
		}
		if strings.HasPrefix(p.Value, "@") {
			if up, ok := files.Open(p.Key); ok {
				if err := writeFilePart(writer, p.Key, up); err != nil {
					return nil, "", newError(CodeBody, "building multipart body", err)
				}
				continue
			}
		}
		if err := writer.WriteField(p.Key, p.Value); err != nil {
			return nil, "", newError(CodeBody, "building multipart body", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", newError(CodeBody, "building multipart body", err)
	}
	return body, writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, field string, up *Upload) error {
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, up.Filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, up.Reader)
	return err
}
