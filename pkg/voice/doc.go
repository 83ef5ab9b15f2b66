// Package voice defines the conversational mode shared by every Grace
// component.
//
// A [State] is owned by the conversation store and pushed to the orb
// animation controller, the renderer and the web surface. All consumers
// treat an unrecognised value as [Inactive].
//
//	s := voice.Parse("listening")
//	fmt.Println(s, s.Active()) // listening true
package voice
