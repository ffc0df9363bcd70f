// Package errors provides standardized error handling for SignalBridge.
//
// # Error Taxonomy
//
// The broker adapter distinguishes four failure families:
//
//   - Invalid value: a wire value could not be coerced to its signal type
//     (wrong dynamic type, unparsable string, out-of-range number). See
//     ErrInvalidValue.
//   - Invalid type: a caller supplied a signal value whose declared kind does
//     not match its stored payload. A programming error; fails fast. See
//     ErrInvalidType.
//   - Path not found: a requested path has no leaf in the decoded payload.
//     Retrievable, since applications may query optional fields. See
//     ErrPathNotFound.
//   - Transport failure: the remote call itself failed. Wrapped with the
//     operation name and delivered on the async error channel.
//
// # Classification
//
// Every error falls into one of three classes: Transient (retryable),
// Invalid (do not retry), Fatal (stop processing). Classification drives
// retry decisions in the bridge and NATS client:
//
//	if err := nc.Publish(subject, data); err != nil {
//	    if errors.IsTransient(err) {
//	        // retry with backoff
//	    }
//	}
//
// # Wrapping
//
// All wrapping follows the pattern "component.method: action failed: %w",
// preserving errors.Is/As chains:
//
//	return errors.WrapInvalid(err, "codec", "FromWire", "boolean coercion")
package errors
