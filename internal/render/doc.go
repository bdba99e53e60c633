/*
Package render draws watch frames to a writer.

Text prints a header with the connection status and how many placed tasks
have finished, the positioned nodes in diagram order (level, then vertical
slot) indented by level, and the most recent live events. Nodes whose incoming edge is animated are marked with
"*". State colors use gookit/color and can be switched off.

JSON writes one object per frame, newline delimited, for piping into other
tools.
*/
package render
