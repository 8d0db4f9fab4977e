package curl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/p4cket/reqpad/packages/request"
)

// ParseError reports that no usable request could be reconstructed from the
// pasted text. The caller receives no partial descriptor.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

var promptRe = regexp.MustCompile(`^\s*\$\s+`)

// Parse interprets a captured curl command line into a normalized descriptor.
func Parse(commandText string) (*request.Descriptor, error) {
	if !strings.Contains(commandText, "curl") {
		return nil, &ParseError{Msg: "no curl command detected; paste a DevTools \"Copy as cURL (bash)\" capture"}
	}

	t := strings.TrimSpace(commandText)
	t = promptRe.ReplaceAllString(t, "")
	t = strings.ReplaceAll(t, "\\\r\n", " ")
	t = strings.ReplaceAll(t, "\\\n", " ")

	tokens, err := tokenize(t)
	if err != nil {
		return nil, &ParseError{Msg: "tokenization failed: " + err.Error()}
	}

	// Drop everything up to and including the invocation token.
	curlIdx := 0
	for i, tok := range tokens {
		if tok == "curl" || strings.HasSuffix(tok, "/curl") {
			curlIdx = i
			break
		}
	}
	if curlIdx+1 <= len(tokens) {
		tokens = tokens[curlIdx+1:]
	}

	var (
		method          string
		urls            []string
		headers         = make(map[string]string)
		cookies         string
		authUser        string
		proxy           string
		followRedirects = true
		insecure        bool
		timeout         = request.DefaultTimeoutSeconds
		useGetFlag      bool
		headOnly        bool

		dataChunks      []string
		urlencodeChunks []string
		formChunks      []string
		compressed      bool
	)

	arg := func(i int) (string, bool) {
		if i+1 < len(tokens) {
			return tokens[i+1], true
		}
		return "", false
	}

	i := 0
	for i < len(tokens) {
		tok := tokens[i]

		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			urls = append(urls, tok)
			i++
			continue
		}

		switch tok {
		case "--url":
			if v, ok := arg(i); ok {
				urls = append(urls, v)
				i += 2
				continue
			}
		case "-X", "--request":
			if v, ok := arg(i); ok {
				method = strings.ToUpper(v)
				i += 2
				continue
			}
		case "-H", "--header":
			if v, ok := arg(i); ok {
				addHeader(headers, v)
				i += 2
				continue
			}
		case "-b", "--cookie":
			if v, ok := arg(i); ok {
				cookies = v
				i += 2
				continue
			}
		case "-u", "--user":
			if v, ok := arg(i); ok {
				authUser = v
				i += 2
				continue
			}
		case "-x", "--proxy":
			if v, ok := arg(i); ok {
				proxy = v
				i += 2
				continue
			}
		case "-A", "--user-agent":
			if v, ok := arg(i); ok {
				headers["User-Agent"] = v
				i += 2
				continue
			}
		case "-e", "--referer":
			if v, ok := arg(i); ok {
				headers["Referer"] = v
				i += 2
				continue
			}
		case "-L", "--location", "--location-trusted":
			followRedirects = true
			i++
			continue
		case "-k", "--insecure":
			insecure = true
			i++
			continue
		case "-m", "--max-time":
			if v, ok := arg(i); ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					timeout = int(f)
				}
				i += 2
				continue
			}
		case "-G", "--get":
			useGetFlag = true
			i++
			continue
		case "-I", "--head":
			headOnly = true
			i++
			continue
		case "-d", "--data", "--data-raw", "--data-binary":
			if v, ok := arg(i); ok {
				dataChunks = append(dataChunks, v)
				i += 2
				continue
			}
		case "--data-urlencode":
			if v, ok := arg(i); ok {
				urlencodeChunks = append(urlencodeChunks, v)
				i += 2
				continue
			}
		case "--json":
			if v, ok := arg(i); ok {
				if _, exists := headers["Content-Type"]; !exists {
					headers["Content-Type"] = "application/json"
				}
				dataChunks = append(dataChunks, v)
				i += 2
				continue
			}
		case "-F", "--form":
			if v, ok := arg(i); ok {
				formChunks = append(formChunks, v)
				i += 2
				continue
			}
		case "--compressed":
			compressed = true
			i++
			continue
		}

		// Unrecognized token: skip it. Best-effort by policy.
		i++
	}

	if len(urls) == 0 {
		return nil, &ParseError{Msg: "no URL found in curl command"}
	}

	bareURL, queryPairs, err := request.SplitURLQuery(urls[0])
	if err != nil {
		return nil, &ParseError{Msg: "unparseable URL: " + err.Error()}
	}

	if cookies != "" {
		if _, exists := headers["Cookie"]; !exists {
			headers["Cookie"] = cookies
		}
	}
	if compressed {
		if _, exists := headers["Accept-Encoding"]; !exists {
			headers["Accept-Encoding"] = "gzip, deflate, br"
		}
	}

	// Method precedence: -I, then -X, then body implies POST, then GET.
	// -G wins over everything and diverts data into the query string.
	if headOnly {
		method = "HEAD"
	}
	if method == "" {
		if len(formChunks) > 0 || len(dataChunks) > 0 || len(urlencodeChunks) > 0 {
			method = "POST"
		} else {
			method = "GET"
		}
	}
	if useGetFlag {
		method = "GET"
	}

	bodyMode := request.BodyNone
	bodyText := ""

	if len(formChunks) > 0 {
		bodyMode = request.BodyMultipart
		bodyText = strings.Join(formChunks, "\n")
	} else {
		if len(urlencodeChunks) > 0 {
			pairs := make([]request.Pair, 0, len(urlencodeChunks))
			for _, item := range urlencodeChunks {
				k, v, _ := strings.Cut(item, "=")
				pairs = append(pairs, request.Pair{Key: k, Value: v})
			}
			if useGetFlag {
				queryPairs = append(queryPairs, pairs...)
			} else {
				bodyMode = request.BodyForm
				lines := make([]string, len(pairs))
				for i, p := range pairs {
					lines[i] = p.Key + "=" + p.Value
				}
				bodyText = strings.Join(lines, "\n")
			}
		}

		if len(dataChunks) > 0 {
			raw := strings.TrimSpace(strings.Join(dataChunks, "&"))
			if useGetFlag {
				for _, part := range strings.Split(raw, "&") {
					if part == "" {
						continue
					}
					k, v, _ := strings.Cut(part, "=")
					queryPairs = append(queryPairs, request.Pair{Key: k, Value: v})
				}
			} else {
				bodyMode, bodyText = classifyData(raw)
			}
		}
	}

	return &request.Descriptor{
		Method:          method,
		URL:             bareURL,
		QueryPairs:      queryPairs,
		Headers:         headers,
		Cookies:         cookies,
		AuthUser:        authUser,
		Proxy:           proxy,
		FollowRedirects: followRedirects,
		Insecure:        insecure,
		Timeout:         request.ClampTimeout(timeout),
		BodyMode:        bodyMode,
		BodyText:        bodyText,
	}, nil
}

// classifyData infers the body mode for concatenated -d chunks: JSON when the
// buffer starts with { or [, form-urlencoded when it looks like an
// ampersand-joined key=value list without newlines, raw otherwise.
func classifyData(raw string) (request.BodyMode, string) {
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return request.BodyJSON, raw
	}
	if strings.Contains(raw, "&") && strings.Contains(raw, "=") && !strings.Contains(raw, "\n") {
		parts := strings.Split(raw, "&")
		lines := make([]string, 0, len(parts))
		for _, p := range parts {
			if p != "" {
				lines = append(lines, p)
			}
		}
		return request.BodyForm, strings.Join(lines, "\n")
	}
	return request.BodyRaw, raw
}

func addHeader(headers map[string]string, line string) {
	k, v, found := strings.Cut(line, ":")
	if !found {
		return
	}
	headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
}
