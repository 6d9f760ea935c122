package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDump is the log-only view of an error: the typed code, every link of
// the chain and whatever the document store driver attached.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	// Backend is postgres, mongo or grpc (Firestore, Pub/Sub) when a driver error was found.
	Backend   string `json:"backend,omitempty"`
	Transient bool   `json:"transient,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	MongoCodes []int  `json:"mongo_codes,omitempty"`
	GRPCCode   string `json:"grpc_code,omitempty"`
}

// Postgres SQLSTATEs worth retrying: serialization_failure and deadlock_detected.
var transientPGCodes = map[string]bool{"40001": true, "40P01": true}

// Mongo server codes Dump reports. 112 WriteConflict and 251 NoSuchTransaction are transient.
var (
	reportedMongoCodes  = []int{11000, 112, 50, 251}
	transientMongoCodes = map[int]bool{112: true, 251: true}
)

var transientGRPCCodes = map[codes.Code]bool{
	codes.Aborted:          true,
	codes.Unavailable:      true,
	codes.DeadlineExceeded: true,
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	var mongoErr mongo.ServerError
	switch {
	case errors.As(err, &pgxErr):
		d.Backend = "postgres"
		d.PGCode, d.PGConstraint, d.PGTable = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName
		d.PGDetail, d.PGMessage = pgxErr.Detail, pgxErr.Message
		d.Transient = transientPGCodes[d.PGCode]
	case errors.As(err, &pqErr):
		d.Backend = "postgres"
		d.PGCode, d.PGConstraint, d.PGTable = string(pqErr.Code), pqErr.Constraint, pqErr.Table
		d.PGDetail, d.PGMessage = pqErr.Detail, pqErr.Message
		d.Transient = transientPGCodes[d.PGCode]
	case errors.As(err, &mongoErr):
		d.Backend = "mongo"
		for _, code := range reportedMongoCodes {
			if mongoErr.HasErrorCode(code) {
				d.MongoCodes = append(d.MongoCodes, code)
				d.Transient = d.Transient || transientMongoCodes[code]
			}
		}
		d.Transient = d.Transient || mongoErr.HasErrorLabel("TransientTransactionError")
	default:
		if st, ok := status.FromError(rootCause(err)); ok && st.Code() != codes.OK {
			d.Backend = "grpc"
			d.GRPCCode = st.Code().String()
			d.Transient = transientGRPCCodes[st.Code()]
		}
	}
	return d
}

// Transient reports whether err came from a store failure that may succeed on
// a second attempt, such as a serialization failure or an aborted transaction.
func Transient(err error) bool {
	return Dump(err).Transient
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
