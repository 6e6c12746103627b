// Copyright 2026 Google LLC. All Rights Reserved.
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

package throttle

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrOverflow is returned when a capacity computation cannot be represented
// in 64 bits.
var ErrOverflow = errors.New("throttle: arithmetic overflow")

// Reason identifies why a throttle configuration was rejected.
// Reasons are stable and may be relied upon by configuration tooling.
type Reason int

const (
	// ReasonUnknown is the zero Reason; it is never returned by this package.
	ReasonUnknown Reason = iota
	// NoThrottleGroups means a bucket declared no throttle groups.
	NoThrottleGroups
	// ZeroRateGroup means a throttle group resolved to a rate of zero.
	ZeroRateGroup
	// OperationRepeatedAcrossGroups means an operation was claimed by more
	// than one group of the same bucket.
	OperationRepeatedAcrossGroups
	// BucketCapacityOverflow means the least common multiple of the group
	// rates (or a legacy rate conversion) does not fit in 64 bits.
	BucketCapacityOverflow
	// NodeCapacityInsufficient means the bucket cannot admit even a single
	// operation of some group at the configured capacity split.
	NodeCapacityInsufficient
	// InvalidLiteral means a textual value (scale factor, multiplier list,
	// capacity split) could not be parsed.
	InvalidLiteral
	// DuplicateBucketName means two buckets of one set share a name.
	DuplicateBucketName
)

var reasonNames = map[Reason]string{
	ReasonUnknown:                 "UNKNOWN",
	NoThrottleGroups:              "NO_THROTTLE_GROUPS",
	ZeroRateGroup:                 "ZERO_RATE_GROUP",
	OperationRepeatedAcrossGroups: "OPERATION_REPEATED_ACROSS_GROUPS",
	BucketCapacityOverflow:        "BUCKET_CAPACITY_OVERFLOW",
	NodeCapacityInsufficient:      "NODE_CAPACITY_INSUFFICIENT",
	InvalidLiteral:                "INVALID_LITERAL",
	DuplicateBucketName:           "DUPLICATE_BUCKET_NAME",
}

// String returns the stable, upper-case name of the reason.
func (r Reason) String() string {
	if n, ok := reasonNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Error lets a Reason be used as an errors.Is target.
func (r Reason) Error() string {
	return r.String()
}

// Code returns the gRPC code used when the reason is surfaced to a caller.
func (r Reason) Code() codes.Code {
	switch r {
	case NodeCapacityInsufficient:
		return codes.FailedPrecondition
	case ReasonUnknown:
		return codes.Unknown
	default:
		return codes.InvalidArgument
	}
}

// BuildError is returned whenever a throttle, group, bucket or bucket set
// cannot be built. The configuration that produced it must be rejected as a
// whole.
type BuildError struct {
	// Reason is the machine-checkable cause.
	Reason Reason
	// Bucket names the offending bucket, if known.
	Bucket string
	// Detail is a human readable description.
	Detail string
	// Err is the underlying error, if any (e.g. ErrOverflow).
	Err error
}

func newBuildError(reason Reason, bucket string, err error, format string, args ...interface{}) *BuildError {
	return &BuildError{
		Reason: reason,
		Bucket: bucket,
		Detail: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

// Error implements error.
func (e *BuildError) Error() string {
	if e.Bucket == "" {
		return fmt.Sprintf("%v: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("bucket %q: %v: %s", e.Bucket, e.Reason, e.Detail)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Reason of e.
func (e *BuildError) Is(target error) bool {
	r, ok := target.(Reason)
	return ok && r == e.Reason
}

// GRPCStatus converts e to a gRPC status, so that status.Code(err) reports a
// meaningful code when a rejected configuration crosses an RPC boundary.
func (e *BuildError) GRPCStatus() *status.Status {
	return status.New(e.Reason.Code(), e.Error())
}

// ReasonOf returns the Reason carried by err, or ReasonUnknown if err is not
// (and does not wrap) a *BuildError.
func ReasonOf(err error) Reason {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Reason
	}
	return ReasonUnknown
}
