package main

// defaultWords is the built-in candidate pool. Each game draws from this
// list plus any custom words supplied with the start-game action.
var defaultWords = []string{
	"Perro",
	"Gato",
	"Pizza",
	"Playa",
	"Montaña",
	"Coche",
	"Avión",
	"Mesa",
	"Silla",
	"Ordenador",
}
