// Package config loads the viewer configuration from an HCL file.
//
// A configuration file may contain three blocks, all optional:
//
//	live {
//	  url             = "ws://localhost:8000/celery-flow/ws"
//	  transport       = "websocket" # or "socketio"
//	  namespace       = "/"         # socket.io only
//	  event           = "task_event" # socket.io only
//	  reconnect_delay = "3s"
//	  connect_timeout = "0s"        # 0 disables the attempt timeout
//	  buffer_size     = 100
//	}
//
//	api {
//	  base_url = "http://${env.FLOW_HOST}/celery-flow/api"
//	  timeout  = "10s"
//	}
//
//	layout {
//	  column_width = 250
//	  row_height   = 100
//	}
//
// Expressions are evaluated with an "env" object holding the process
// environment and a handful of string functions (lower, upper, format,
// coalesce, trimspace). Anything not set keeps its default.
package config
