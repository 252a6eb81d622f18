package store

// BaseDocumentStore is the base implementation of a DocumentStore. Client is the underlying datastore client,
// such as a database connection.
type BaseDocumentStore[T any] struct {
	Client T
}

// BaseVectorStore is the base implementation of a VectorStore. Client is the underlying datastore client.
type BaseVectorStore[T any] struct {
	Client T
}

// BaseAnswerCache is the base implementation of an AnswerCache. Client is the underlying datastore client.
type BaseAnswerCache[T any] struct {
	Client T
}
