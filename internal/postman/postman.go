// Package postman parses Postman v2.1 collections into
// []model.ParsedRequest, and builds the single-request "manual URL"
// source, per spec.md §6's Request source contract. Grounded on
// original_source/deli/postman.py's item walk + variable resolution
// and manual.py's single-request builder; JSON field access uses
// gjson the way internal/attacker/attacker.go and
// internal/validator/assertions.go do.
package postman

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/deli-labs/sayl/pkg/model"
	"github.com/tidwall/gjson"
)

// ManualRequestName and ManualFolderPath implement spec.md §6's manual
// request source contract (name="manual"); the program this was
// distilled from used "Manual Target" for its report title instead.
const (
	ManualRequestName = "manual"
	ManualFolderPath  = ""
)

// Load reads a Postman v2.1 collection file and returns a flat,
// folder-path-annotated list of ParsedRequest, applying envOverride as
// {{var}} substitutions at load time (spec.md §6: "Environment
// overrides are KEY=VALUE substitutions applied during RequestPrep" —
// Postman-time resolution here additionally resolves variables baked
// into the collection itself, e.g. {{baseUrl}}, before RequestPrep
// ever sees the request).
func Load(path string, envOverride map[string]string) ([]model.ParsedRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: collection file not found: %s", model.ErrCollectionInvalid, path)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON in collection %s", model.ErrCollectionInvalid, path)
	}

	root := gjson.ParseBytes(data)
	var out []model.ParsedRequest
	var nextID uint64 = 1
	walkItems(root.Get("item"), "", envOverride, &out, &nextID)

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no requests found in collection %s", model.ErrCollectionInvalid, path)
	}
	return out, nil
}

func walkItems(items gjson.Result, folderPath string, env map[string]string, out *[]model.ParsedRequest, nextID *uint64) {
	if !items.IsArray() {
		return
	}
	items.ForEach(func(_, item gjson.Result) bool {
		name := item.Get("name").String()
		if name == "" {
			name = "Unnamed"
		}
		if item.Get("request").Exists() {
			if req := parseRequestItem(item, folderPath, env, *nextID); req != nil {
				*out = append(*out, *req)
				*nextID++
			}
		}
		if sub := item.Get("item"); sub.Exists() {
			newPath := name
			if folderPath != "" {
				newPath = folderPath + "/" + name
			}
			walkItems(sub, newPath, env, out, nextID)
		}
		return true
	})
}

func parseRequestItem(item gjson.Result, folderPath string, env map[string]string, id uint64) *model.ParsedRequest {
	name := item.Get("name").String()
	if name == "" {
		name = "Unnamed"
	}
	req := item.Get("request")

	var rawURL string
	urlField := req.Get("url")
	switch {
	case urlField.Type == gjson.String:
		rawURL = urlField.String()
	case urlField.IsObject():
		rawURL = buildURLFromObject(urlField)
	default:
		return nil
	}

	method := strings.ToUpper(strings.TrimSpace(req.Get("method").String()))
	if method == "" {
		method = "GET"
	}

	headers := parseHeaders(req.Get("header"), env)
	body := parseBody(req.Get("body"))

	return &model.ParsedRequest{
		ID:         id,
		Name:       name,
		FolderPath: folderPath,
		Method:     method,
		URL:        resolveVars(rawURL, env),
		Headers:    headers,
		Body:       body,
	}
}

func buildURLFromObject(u gjson.Result) string {
	protocol := u.Get("protocol").String()
	if protocol == "" {
		protocol = "https"
	}

	var host string
	hostField := u.Get("host")
	if hostField.Type == gjson.String {
		host = hostField.String()
	} else if hostField.IsArray() {
		var parts []string
		hostField.ForEach(func(_, v gjson.Result) bool {
			parts = append(parts, v.String())
			return true
		})
		host = strings.Join(parts, ".")
	}

	var pathParts []string
	u.Get("path").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			pathParts = append(pathParts, v.String())
		}
		return true
	})
	path := strings.Join(pathParts, "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	raw := fmt.Sprintf("%s://%s%s", protocol, host, path)

	var qs []string
	u.Get("query").ForEach(func(_, q gjson.Result) bool {
		k, v := q.Get("key").String(), q.Get("value").String()
		qs = append(qs, k+"="+v)
		return true
	})
	if len(qs) > 0 {
		raw += "?" + strings.Join(qs, "&")
	}
	return raw
}

func parseHeaders(headers gjson.Result, env map[string]string) []model.HeaderField {
	var out []model.HeaderField
	headers.ForEach(func(_, h gjson.Result) bool {
		if h.Get("disabled").Bool() {
			return true
		}
		key := h.Get("key").String()
		if key == "" {
			return true
		}
		out = append(out, model.HeaderField{
			Key:   key,
			Value: resolveVars(h.Get("value").String(), env),
		})
		return true
	})
	return out
}

func parseBody(body gjson.Result) string {
	if !body.Exists() {
		return ""
	}
	mode := body.Get("mode").String()
	switch mode {
	case "raw":
		return body.Get("raw").String()
	case "urlencoded":
		values := url.Values{}
		body.Get("urlencoded").ForEach(func(_, kv gjson.Result) bool {
			if kv.Get("disabled").Bool() {
				return true
			}
			values.Add(kv.Get("key").String(), kv.Get("value").String())
			return true
		})
		return values.Encode()
	default:
		return ""
	}
}

// resolveVars performs Postman's {{var}} substitution at load time,
// separate from and prior to RequestPrep's own per-run substitution.
func resolveVars(s string, env map[string]string) string {
	if env == nil || !strings.Contains(s, "{{") {
		return s
	}
	var sb strings.Builder
	remaining := s
	for {
		start := strings.Index(remaining, "{{")
		if start == -1 {
			sb.WriteString(remaining)
			break
		}
		sb.WriteString(remaining[:start])
		rest := remaining[start+2:]
		end := strings.Index(rest, "}}")
		if end == -1 {
			sb.WriteString(remaining[start:])
			break
		}
		key := strings.TrimSpace(rest[:end])
		if v, ok := env[key]; ok {
			sb.WriteString(v)
		} else {
			sb.WriteString("{{")
			sb.WriteString(key)
			sb.WriteString("}}")
		}
		remaining = rest[end+2:]
	}
	return sb.String()
}

// BuildManualRequest builds the single-request source for a bare
// target URL, per spec.md §6: method=GET, no body, name="manual".
func BuildManualRequest(rawURL string) ([]model.ParsedRequest, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: manual URL must not be empty", model.ErrCollectionInvalid)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid manual URL %q", model.ErrCollectionInvalid, rawURL)
	}
	return []model.ParsedRequest{{
		ID:         1,
		Name:       ManualRequestName,
		FolderPath: ManualFolderPath,
		Method:     "GET",
		URL:        rawURL,
	}}, nil
}

// ManualReportName returns a short label for the report title when
// using a manual URL — the target host, matching manual_report_name.
func ManualReportName(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return "manual"
	}
	return parsed.Host
}
