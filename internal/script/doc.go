// Package script defines actions in Lua.
//
// A script declares a global actions table keyed by action identity:
//
//	actions = {
//	  ["Doc.Reload"] = {
//	    run = function(payload)
//	      log("reloading " .. tostring(payload))
//	    end,
//	    can_execute = function()
//	      return doc_open
//	    end,
//	  },
//	}
//
// Engine.Register adds every entry to a dispatcher. run receives the dispatch
// payload; raising a Lua error fails the dispatch. can_execute is optional and
// its result is tested for truthiness. Host state reaches scripts through
// SetGlobal.
//
// The Lua state opens only the base, table, string and math libraries, and
// the loading functions of the base library are removed. Calls into the state
// are serialized, and a dispatch context cancels a running handler.
package script
