// Copyright 2018 The gVisor Authors.
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

// Package klog is a thin structured-logging wrapper, shaped like gVisor's
// own pkg/log (Infof/Warningf/Debugf/IsLogging), over logrus.
package klog

import (
	"github.com/sirupsen/logrus"
)

// Logger is the package-wide logger. Tests may swap it for one with a
// buffered output and a higher level.
var Logger = logrus.New()

// Infof logs at info level.
func Infof(format string, args ...interface{}) { Logger.Infof(format, args...) }

// Warningf logs at warning level. task_timeout_handler's "wrong task
// state" branch and task_ipi_event's event-pool-exhaustion drop both log
// through this.
func Warningf(format string, args ...interface{}) { Logger.Warningf(format, args...) }

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }

// IsLogging reports whether logrus.Level would emit a message at level.
func IsLogging(level logrus.Level) bool { return Logger.IsLevelEnabled(level) }
