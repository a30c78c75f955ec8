/*
Package iso7816 implements the generic command layer for smart cards
speaking ISO/IEC 7816-4: APDU encoding, a client that drives a card
connection with automatic transport handling, status-word analysis and
the base mapping from status words to error kinds.

Card-family drivers (such as the STARCOS driver in pkg/starcos) sit on
top of this package. They build commands with NewCommandAPDU or the
SELECT helpers, dispatch them through a Client, and interpret the
resulting Trace; anything family-specific (proprietary file creation,
vendor status words) stays out of this package.

# Transactions and traces

Communication is strictly synchronous: one Command APDU out, one
Response APDU back, terminated by a two-byte status word. A single
logical operation may need several physical exchanges — the card
answers 61XX ("XX more bytes available") or 6CXX ("wrong length, use
XX") and the Client reacts with GET RESPONSE or a corrected retry. The
Trace returned by Client.Send records the whole conversation; its final
transaction carries the outcome.
*/
package iso7816
