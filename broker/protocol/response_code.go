package protocol

import "strconv"

// ResponseCode is the outcome code a broker attaches to every control-plane
// reply. CodeOK is the only code which always indicates success; whether
// other codes are tolerated is decided by each operation.
type ResponseCode uint16

const (
	CodeOK                                ResponseCode = 1
	CodeStreamDoesNotExist                ResponseCode = 2
	CodeSubscriptionIDAlreadyExists       ResponseCode = 3
	CodeSubscriptionIDDoesNotExist        ResponseCode = 4
	CodeStreamAlreadyExists               ResponseCode = 5
	CodeStreamNotAvailable                ResponseCode = 6
	CodeSASLMechanismNotSupported         ResponseCode = 7
	CodeAuthenticationFailure             ResponseCode = 8
	CodeSASLError                         ResponseCode = 9
	CodeSASLChallenge                     ResponseCode = 10
	CodeSASLAuthenticationFailureLoopback ResponseCode = 11
	CodeVirtualHostAccessFailure          ResponseCode = 12
	CodeUnknownFrame                      ResponseCode = 13
	CodeFrameTooLarge                     ResponseCode = 14
	CodeInternalError                     ResponseCode = 15
	CodeAccessRefused                     ResponseCode = 16
	CodePreconditionFailed                ResponseCode = 17
	CodePublisherDoesNotExist             ResponseCode = 18
	CodeOffsetNotFound                    ResponseCode = 19
)

var responseCodeNames = map[ResponseCode]string{
	CodeOK:                                "OK",
	CodeStreamDoesNotExist:                "STREAM_DOES_NOT_EXIST",
	CodeSubscriptionIDAlreadyExists:       "SUBSCRIPTION_ID_ALREADY_EXISTS",
	CodeSubscriptionIDDoesNotExist:        "SUBSCRIPTION_ID_DOES_NOT_EXIST",
	CodeStreamAlreadyExists:               "STREAM_ALREADY_EXISTS",
	CodeStreamNotAvailable:                "STREAM_NOT_AVAILABLE",
	CodeSASLMechanismNotSupported:         "SASL_MECHANISM_NOT_SUPPORTED",
	CodeAuthenticationFailure:             "AUTHENTICATION_FAILURE",
	CodeSASLError:                         "SASL_ERROR",
	CodeSASLChallenge:                     "SASL_CHALLENGE",
	CodeSASLAuthenticationFailureLoopback: "SASL_AUTHENTICATION_FAILURE_LOOPBACK",
	CodeVirtualHostAccessFailure:          "VIRTUAL_HOST_ACCESS_FAILURE",
	CodeUnknownFrame:                      "UNKNOWN_FRAME",
	CodeFrameTooLarge:                     "FRAME_TOO_LARGE",
	CodeInternalError:                     "INTERNAL_ERROR",
	CodeAccessRefused:                     "ACCESS_REFUSED",
	CodePreconditionFailed:                "PRECONDITION_FAILED",
	CodePublisherDoesNotExist:             "PUBLISHER_DOES_NOT_EXIST",
	CodeOffsetNotFound:                    "OFFSET_NOT_FOUND",
}

// String returns the upper-snake name of the ResponseCode, or its numeric
// value if the code is unknown.
func (x ResponseCode) String() string {
	if s, ok := responseCodeNames[x]; ok {
		return s
	}
	return "RESPONSE_CODE(" + strconv.Itoa(int(x)) + ")"
}

// Validate returns an error if the ResponseCode is not a known code.
func (x ResponseCode) Validate() error {
	if _, ok := responseCodeNames[x]; !ok {
		return NewValidationError("invalid code (%d)", uint16(x))
	}
	return nil
}
