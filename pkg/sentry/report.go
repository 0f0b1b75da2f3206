// Copyright 2025 UMH Systems GmbH
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

package sentry

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
	IssueTypeFatal   IssueType = "fatal"
)

// ReportIssue logs err and forwards it to Sentry when reporting is enabled.
// Unlike a long-running service, a fatal issue does not panic: the command decides how to exit.
func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext reports an issue with additional context data that will be included in Sentry.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if log == nil {
		// If logger initialization failed somehow, create a no-op logger to avoid nil panics
		log = zap.NewNop().Sugar()
	}

	if err == nil {
		return
	}

	var level sentry.Level

	switch issueType {
	case IssueTypeFatal:
		log.Errorf("Fatal: %s", err)

		level = sentry.LevelFatal
	case IssueTypeError:
		log.Error(err)

		level = sentry.LevelError
	case IssueTypeWarning:
		log.Warn(err)

		level = sentry.LevelWarning
	default:
		log.Error(err)

		level = sentry.LevelError
	}

	sendSentryEvent(createSentryEvent(level, err, context))

	if issueType == IssueTypeFatal {
		Flush()
	}
}

// ReportMigrationError reports a failed migration step with the migration name as context.
func ReportMigrationError(log *zap.SugaredLogger, migration string, err error) {
	ReportIssueWithContext(err, IssueTypeFatal, log, map[string]interface{}{
		"migration": migration,
		"operation": "migrate",
	})
}
