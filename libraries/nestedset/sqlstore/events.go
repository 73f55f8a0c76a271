// Copyright 2026 Dolthub, Inc.
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

package sqlstore

import (
	"time"

	"github.com/gocraft/dbr/v2"
	"github.com/sirupsen/logrus"
)

// logReceiver forwards dbr statement events to a logrus logger. Statement
// text is only logged at trace level.
type logReceiver struct {
	logger logrus.FieldLogger
}

var _ dbr.EventReceiver = logReceiver{}

func (r logReceiver) Event(eventName string) {}

func (r logReceiver) EventKv(eventName string, kvs map[string]string) {}

func (r logReceiver) EventErr(eventName string, err error) error {
	r.logger.WithError(err).WithField("event", eventName).Warn("sql statement failed")
	return err
}

func (r logReceiver) EventErrKv(eventName string, err error, kvs map[string]string) error {
	r.logger.WithError(err).WithFields(kvFields(eventName, kvs)).Warn("sql statement failed")
	return err
}

func (r logReceiver) Timing(eventName string, nanoseconds int64) {}

func (r logReceiver) TimingKv(eventName string, nanoseconds int64, kvs map[string]string) {
	if l, ok := r.logger.(*logrus.Logger); ok && !l.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	r.logger.WithFields(kvFields(eventName, kvs)).
		WithField("duration", time.Duration(nanoseconds)).
		Trace("sql statement")
}

func kvFields(eventName string, kvs map[string]string) logrus.Fields {
	f := make(logrus.Fields, len(kvs)+1)
	for k, v := range kvs {
		f[k] = v
	}
	f["event"] = eventName
	return f
}
