/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package workload parses generated workload launch scripts into typed
// descriptors.
//
// A script is a sequence of lines of the form
//
//	ssh <user>@<host> -n -f 'for i in {<start>..<end>}; do <Runtime> <flags> >/dev/null & done'
//	sleep 1
//
// The first command line is the descriptor header: it names the runtime, the
// port range (one process per port) and the runtime's per-process connection
// count flag.
package workload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// ErrDescriptorParse is the sentinel wrapped by every parse failure.
var ErrDescriptorParse = errors.New("workload descriptor parse error")

// ParseError describes why a workload script was rejected.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrDescriptorParse
}

// Descriptor is the typed view of a workload script.
type Descriptor struct {
	Path      string
	Name      string
	Runtime   string
	Kind      RuntimeKind
	StartPort int
	EndPort   int
	// FlagValue is the per-process connection count read from the runtime's
	// target flag. Zero for runtimes without one.
	FlagValue int
	// Target is the number of established connections expected on the host
	// once every process in the port range is up.
	Target int
	Plan   []Step
}

// NumPorts is the number of processes the workload starts.
func (d Descriptor) NumPorts() int {
	return d.EndPort - d.StartPort + 1
}

// Step is one entry of a workload's launch plan: either a remote launch or a
// pause between launches.
type Step struct {
	User    string
	Host    string
	Command string
	Pause   time.Duration
}

// IsPause reports whether the step only waits.
func (s Step) IsPause() bool {
	return s.Command == ""
}

const (
	// MaxPort bounds the {start..end} port range.
	MaxPort = 65535
	// MaxTarget bounds the connection target of a workload.
	MaxTarget = 1 << 20
)

var (
	portRangeRe   = regexp.MustCompile(`^\{(\d+)\.\.(\d+)\}`)
	runtimeNameRe = regexp.MustCompile(`^\w+$`)
)

// ParseFile reads and parses the workload script at path.
func ParseFile(path string) (Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, &ParseError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return Descriptor{}, err
	}
	d.Path = path
	d.Name = filepath.Base(path)
	return d, nil
}

// Parse reads a workload script and returns its descriptor. On any error the
// returned Descriptor is the zero value.
func Parse(r io.Reader) (Descriptor, error) {
	var (
		d         Descriptor
		headerSet bool
		lineNo    int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		step, command, err := parseLine(line)
		if err != nil {
			return Descriptor{}, &ParseError{Line: lineNo, Reason: err.Error()}
		}
		d.Plan = append(d.Plan, step)

		if headerSet || step.IsPause() {
			continue
		}
		if err := parseHeader(&d, command); err != nil {
			return Descriptor{}, &ParseError{Line: lineNo, Reason: err.Error()}
		}
		headerSet = true
	}
	if err := scanner.Err(); err != nil {
		return Descriptor{}, &ParseError{Line: lineNo, Reason: err.Error()}
	}
	if !headerSet {
		return Descriptor{}, &ParseError{Line: lineNo, Reason: "no launch command found"}
	}
	return d, nil
}

// parseLine turns one script line into a plan step. For launch lines it also
// returns the tokenized remote command.
func parseLine(line string) (Step, []string, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return Step{}, nil, fmt.Errorf("cannot tokenize line: %w", err)
	}
	if len(tokens) == 0 {
		return Step{}, nil, errors.New("empty command")
	}

	switch tokens[0] {
	case "sleep":
		if len(tokens) != 2 {
			return Step{}, nil, errors.New("sleep takes exactly one argument")
		}
		seconds, err := strconv.ParseFloat(tokens[1], 64)
		if err != nil || seconds < 0 {
			return Step{}, nil, fmt.Errorf("invalid sleep duration %q", tokens[1])
		}
		return Step{Pause: time.Duration(seconds * float64(time.Second))}, nil, nil
	case "ssh":
		return parseSSH(tokens[1:])
	default:
		return Step{}, nil, fmt.Errorf("unsupported command %q", tokens[0])
	}
}

// sshOptionsWithArg are the ssh options that consume the following token.
var sshOptionsWithArg = map[string]bool{
	"-p": true, "-i": true, "-o": true, "-l": true, "-F": true, "-J": true,
}

func parseSSH(args []string) (Step, []string, error) {
	var step Step
	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		if sshOptionsWithArg[arg] {
			if i+1 >= len(args) {
				return Step{}, nil, fmt.Errorf("ssh option %s needs a value", arg)
			}
			if arg == "-l" {
				step.User = args[i+1]
			}
			i++
		}
	}
	if i >= len(args) {
		return Step{}, nil, errors.New("ssh destination missing")
	}

	destination := args[i]
	if user, host, ok := strings.Cut(destination, "@"); ok {
		step.User, step.Host = user, host
	} else {
		step.Host = destination
	}
	if step.Host == "" {
		return Step{}, nil, fmt.Errorf("invalid ssh destination %q", destination)
	}

	// ssh may still see options after the destination ("user@host -n -f 'cmd'").
	rest := args[i+1:]
	for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
		if sshOptionsWithArg[rest[0]] && len(rest) > 1 {
			rest = rest[1:]
		}
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return Step{}, nil, errors.New("ssh remote command missing")
	}
	step.Command = strings.TrimSpace(strings.Join(rest, " "))

	command, err := shlex.Split(step.Command)
	if err != nil {
		return Step{}, nil, fmt.Errorf("cannot tokenize remote command: %w", err)
	}
	return step, command, nil
}

// parseHeader fills runtime, port range and target from the header's remote
// command tokens.
func parseHeader(d *Descriptor, command []string) error {
	runtimeIdx := -1
	for i, token := range command {
		if token == "do" && i+1 < len(command) {
			runtimeIdx = i + 1
			break
		}
	}
	if runtimeIdx < 0 {
		return errors.New("runtime name not found (expected \"do <Runtime>\")")
	}
	runtime := filepath.Base(command[runtimeIdx])
	if !runtimeNameRe.MatchString(runtime) {
		return fmt.Errorf("invalid runtime name %q", runtime)
	}

	portsFound := false
	for _, token := range command[:runtimeIdx] {
		m := portRangeRe.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		start, errStart := strconv.Atoi(m[1])
		end, errEnd := strconv.Atoi(m[2])
		if errStart != nil || errEnd != nil {
			return fmt.Errorf("invalid port range %q", token)
		}
		if end < start {
			return fmt.Errorf("port range %q is empty", token)
		}
		if end > MaxPort {
			return fmt.Errorf("port range %q exceeds port %d", token, MaxPort)
		}
		d.StartPort, d.EndPort = start, end
		portsFound = true
		break
	}
	if !portsFound {
		return errors.New("port range not found (expected \"{start..end}\")")
	}

	d.Runtime = runtime
	d.Kind = KindOf(runtime)

	flag := d.Kind.targetFlag()
	if flag == "" {
		d.FlagValue = 0
		d.Target = 0
		return nil
	}

	flags := scanFlags(command[runtimeIdx+1:])
	raw, ok := flags[flag]
	if !ok || raw == "" {
		return fmt.Errorf("%s target flag %s not found", runtime, flag)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fmt.Errorf("%s target flag %s has invalid value %q", runtime, flag, raw)
	}
	if value > MaxTarget/d.NumPorts() {
		return fmt.Errorf("%s target %d x %d ports exceeds %d connections", runtime, value, d.NumPorts(), MaxTarget)
	}
	d.FlagValue = value
	d.Target = value * d.NumPorts()
	return nil
}

// scanFlags collects "--name=value", "--name value" and "-x value" flags up to
// the end of the runtime's argument list.
func scanFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if isArgListEnd(arg) {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			flags[name] = value
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !isArgListEnd(args[i+1]) {
			flags[arg] = args[i+1]
			i++
			continue
		}
		flags[arg] = ""
	}
	return flags
}

func isArgListEnd(token string) bool {
	return token == "&" || token == "done" || token == ";" ||
		strings.HasPrefix(token, ">") || strings.HasPrefix(token, "2>")
}
