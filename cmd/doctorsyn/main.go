// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command doctorsyn derives branch-free polynomial evaluators.
//
// Usage:
//
//	doctorsyn list
//	doctorsyn derive --function=sin --lo=-10 --hi=10 --tolerance=1e-7 --max_degree=12
//	doctorsyn eval --function=exp --lo=-5 --hi=5 --mode=relative 0.5 1.5
//	doctorsyn render --function=ln --lo=0.01 --hi=100 --package=approx --output=ln.go
//	doctorsyn batch --config=jobs.yaml --render_dir=gen
//
// Every flag can also be set in the YAML file given with --config or through
// a DOCTORSYN_<FLAG> environment variable.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
