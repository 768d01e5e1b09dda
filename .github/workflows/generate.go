// Command generate writes the CI workflow: `go run ./.github/workflows >
// .github/workflows/ci.yaml`.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type PushTrigger struct {
	Branches []string `yaml:"branches,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

type Trigger struct {
	Push        PushTrigger `yaml:"push,omitempty"`
	PullRequest *struct{}   `yaml:"pull_request,omitempty"`
}

type Args map[string]interface{}

type Step struct {
	Name string `yaml:"name,omitempty"`
	If   string `yaml:"if,omitempty"`
	Uses string `yaml:"uses,omitempty"`
	ID   string `yaml:"id,omitempty"`
	Run  string `yaml:"run,omitempty"`
	With Args   `yaml:"with,omitempty"`
}

type Job struct {
	RunsOn string `yaml:"runs-on"`
	Steps  []Step `yaml:"steps"`
}

type Workflow struct {
	Name string         `yaml:"name"`
	On   Trigger        `yaml:"on,omitempty"`
	Jobs map[string]Job `yaml:"jobs"`
}

func WorkflowCI(goVersion string) Workflow {
	return Workflow{
		Name: "ci",
		On: Trigger{
			Push:        PushTrigger{Branches: []string{"*"}, Tags: []string{"*"}},
			PullRequest: &struct{}{},
		},
		Jobs: map[string]Job{
			"test":  JobGo(goVersion, "go vet ./...", "go test -race ./..."),
			"build": JobGo(goVersion, "go build -o konixfs ./cmd/konixfs"),
			// a formatted image survives a boot with the shell exiting at once
			"smoke": JobGo(
				goVersion,
				"go build -o konixfs ./cmd/konixfs",
				"./konixfs --image root.img mkfs --sectors 20000",
				"echo exit | ./konixfs --image root.img boot",
				"./konixfs --image root.img inspect",
			),
		},
	}
}

func JobGo(goVersion string, commands ...string) Job {
	steps := []Step{{
		Name: "Checkout",
		Uses: "actions/checkout@v4",
	}, {
		Name: "Set up Go",
		Uses: "actions/setup-go@v5",
		With: Args{"go-version": goVersion},
	}}
	for _, command := range commands {
		steps = append(steps, Step{Name: command, Run: command})
	}
	return Job{RunsOn: "ubuntu-latest", Steps: steps}
}

func MarshalToWriter(w io.Writer, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling to YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func main() {
	if err := MarshalToWriter(os.Stdout, WorkflowCI("1.24")); err != nil {
		log.Fatalf("marshaling ci workflow: %v", err)
	}
}
