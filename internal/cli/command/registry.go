package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "mount",
			Action:       "add",
			Method:       "POST",
			PathTemplate: "/mount/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"game"}, Prompt: "game id", Required: true},
				{Name: "zip", Aliases: []string{"zippath", "path"}, Prompt: "zip path (empty to fetch from storage)", Required: false},
			},
		},
		{
			Service:      "mount",
			Action:       "remove",
			Method:       "DELETE",
			PathTemplate: "/mount/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"game"}, Prompt: "game id", Required: true},
			},
		},
		{
			Service:      "mount",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/mounts",
		},
		{
			Service:      "server",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/health",
		},
	}

	registry := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		registry[cmd.Service+" "+cmd.Action] = cmd
	}
	return registry
}

// BuildRequest resolves a command and its params into a concrete
// request: path parameters substituted, body marshaled for methods
// that carry one.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)

	path, err := resolvePath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	spec := RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
	}
	if cmd.Method == "GET" || cmd.Method == "DELETE" {
		return spec, nil
	}
	if payload := payloadFor(cmd, params); payload != nil {
		if spec.Body, err = json.Marshal(payload); err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request body: %w", err)
		}
	}
	return spec, nil
}

func resolvePath(template string, params Params) (string, error) {
	if !strings.Contains(template, ":id") {
		return template, nil
	}
	id := params.Get("id")
	if id == "" {
		return "", fmt.Errorf("missing path parameter: id")
	}
	return strings.ReplaceAll(template, ":id", id), nil
}

// payloadFor maps a command to its JSON body. Only mount add carries
// one today; an empty zipPath is sent as-is and tells the server to
// pull the archive from object storage.
func payloadFor(cmd Command, params Params) interface{} {
	if cmd.Service == "mount" && cmd.Action == "add" {
		return map[string]string{"zipPath": params.Get("zip")}
	}
	return nil
}
