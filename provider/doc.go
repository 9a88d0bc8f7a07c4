// Package provider holds the generic registry used to pick a backend at
// runtime: factories are registered by name, instances are initialized
// from config, and a Selector chooses among the available ones.
//
//	reg := provider.NewRegistry[transcription.Provider]()
//	reg.RegisterFactory("whisper", whisper.Factory())
//	mgr := provider.NewManager(reg, &provider.PrioritySelector[transcription.Provider]{Priority: names}, log)
//	mgr.Initialize("whisper-0", map[string]any{"url": u})
//	p, _ := mgr.Get(ctx)
package provider
