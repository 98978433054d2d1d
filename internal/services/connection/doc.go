// Package connection supervises the single transport connection of the
// gateway.
//
// The Supervisor is a state machine over domain.ConnectionStatus:
//
//	Disconnected -> Connecting -> AwaitingQR | Authenticated
//	AwaitingQR   -> Authenticated | Disconnected
//	Authenticated -> Disconnected
//	Disconnected -> Connecting (reconnect timer or Initialize)
//
// Each transport handle is tagged with a generation number. Callbacks and
// timers carry the generation they were created for and are ignored once a
// newer handle, a logout or a close has superseded it, which keeps at most
// one live handle per process even when closes and timers race.
//
// A close whose cause is terminal (the remote side logged the device out)
// wipes the credentials and starts a fresh, unpaired session. Every other
// close reconnects with exponential backoff and the stored credentials. An
// explicit Logout wipes the credentials and stays Disconnected until the
// next Initialize.
package connection
