// Package voice manages live duplex voice sessions between the styling
// assistant client and the remote conversational agent.
//
// A Session owns the full lifecycle of one conversation: it acquires the
// microphone through an audio.Bridge, performs the transport handshake,
// streams encoded capture frames outbound, and routes inbound server
// events to transcript accumulation, scheduled speech playback, and tool
// dispatch. Microphone, speaker, and connection are released exactly once
// no matter how the session ends.
//
// # Usage
//
//	bridge := audio.NewBridge(audio.NewMicSource(), speaker, audio.OutputSampleRate)
//	transport := bundled.NewGemini()
//
//	session, err := voice.NewSession(cfg, transport, bridge, voice.Callbacks{
//	    OnProductsFound: func(products []voice.Product) {
//	        // render recommendations
//	    },
//	    OnAgentTranscript: func(text string, final bool) {
//	        fmt.Printf("Aura: %s\n", text)
//	    },
//	    OnClosed: func(reason error) {
//	        // single "session ended" state; reason is diagnostic only
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := session.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
// The transport is an injected dependency so the session can be driven
// against a fake in tests. Exactly one session should be active per host
// at a time; close the previous session before opening another.
package voice
