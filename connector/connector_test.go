package connector

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/diligent/sim"
)

type testEdge struct {
	target     sim.NodeID
	degenerate bool
}

func (e *testEdge) Target() sim.NodeID                     { return e.target }
func (e *testEdge) Send(ev sim.Event, ctx sim.SendContext) {}
func (e *testEdge) IsDegenerated() bool                    { return e.degenerate }

type plainEdge struct {
	target sim.NodeID
}

func (e *plainEdge) Target() sim.NodeID                     { return e.target }
func (e *plainEdge) Send(ev sim.Event, ctx sim.SendContext) {}

func h(i, g uint32) sim.ConnectorHandle {
	return sim.ConnectorHandle{Index: i, Generation: g}
}

var _ = Describe("HomogeneousConnector", func() {
	It("should return the only member of the requested type", func() {
		coll := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}

		Expect(HomogeneousConnector(coll, 2)).To(Equal(h(1, 1)))
	})

	It("should return null for a homogeneous collection of another type", func() {
		coll := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}

		Expect(HomogeneousConnector(coll, 3).IsNull()).To(BeTrue())
	})

	It("should search a heterogeneous collection by type", func() {
		coll := sim.Collection{
			{Handle: h(1, 1), EdgeType: 2},
			{Handle: h(4, 3), EdgeType: 5},
		}

		Expect(HomogeneousConnector(coll, 5)).To(Equal(h(4, 3)))
		Expect(HomogeneousConnector(coll, 7).IsNull()).To(BeTrue())
	})

	It("should return null for an empty collection", func() {
		Expect(HomogeneousConnector(nil, 0).IsNull()).To(BeTrue())
	})
})

var _ = Describe("DiligentModel", func() {
	var (
		mockCtrl  *gomock.Controller
		storage   *MockStorage
		registrar *MockRegistrar
		model     *DiligentModel
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		storage = NewMockStorage(mockCtrl)
		registrar = NewMockRegistrar(mockCtrl)
		model = NewDiligentModel(storage, registrar)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should register the first connector of a sender", func() {
		registrar.EXPECT().CheckSetUp().Return(nil)
		e := &testEdge{target: 9}
		after := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}

		storage.EXPECT().
			Insert(sim.Collection(nil), sim.ThreadID(0), sim.EdgeTypeID(2), e).
			Return(after, nil)
		registrar.EXPECT().
			RegisterConnector(h(1, 1), sim.ConnectorHandle{},
				sim.NodeID(3), sim.ThreadID(0), sim.EdgeTypeID(2)).
			Return(nil)

		coll, err := model.AddConnection(3, nil, 0, 2, e)

		Expect(err).NotTo(HaveOccurred())
		Expect(coll).To(Equal(after))
	})

	It("should register a replaced connector", func() {
		registrar.EXPECT().CheckSetUp().Return(nil)
		e := &testEdge{target: 9}
		before := sim.Collection{
			{Handle: h(1, 1), EdgeType: 2},
			{Handle: h(2, 1), EdgeType: 4},
		}
		after := sim.Collection{
			{Handle: h(1, 2), EdgeType: 2},
			{Handle: h(2, 1), EdgeType: 4},
		}

		storage.EXPECT().
			Insert(before, sim.ThreadID(1), sim.EdgeTypeID(2), e).
			Return(after, nil)
		registrar.EXPECT().
			RegisterConnector(h(1, 2), h(1, 1),
				sim.NodeID(3), sim.ThreadID(1), sim.EdgeTypeID(2)).
			Return(nil)

		_, err := model.AddConnection(3, before, 1, 2, e)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should pass on registration errors", func() {
		registrar.EXPECT().CheckSetUp().Return(nil)
		e := &testEdge{target: 9}
		after := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}
		notSetUp := errors.New("not set up")

		storage.EXPECT().
			Insert(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(after, nil)
		registrar.EXPECT().
			RegisterConnector(gomock.Any(), gomock.Any(), gomock.Any(),
				gomock.Any(), gomock.Any()).
			Return(notSetUp)

		_, err := model.AddConnection(3, nil, 0, 2, e)

		Expect(err).To(MatchError(notSetUp))
	})

	It("should not register if the storage fails", func() {
		registrar.EXPECT().CheckSetUp().Return(nil)
		e := &testEdge{target: 9}
		failure := errors.New("failure")

		storage.EXPECT().
			Insert(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, failure)

		_, err := model.AddConnection(3, nil, 0, 2, e)

		Expect(err).To(MatchError(failure))
	})

	It("should not touch the storage before setup", func() {
		notSetUp := errors.New("not set up")
		before := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}
		registrar.EXPECT().CheckSetUp().Return(notSetUp).Times(2)

		added, err := model.AddConnection(3, before, 0, 2, &testEdge{target: 9})
		Expect(err).To(MatchError(notSetUp))
		Expect(added).To(Equal(before))

		deleted, err := model.DeleteConnection(9, before, 0, 2)
		Expect(err).To(MatchError(notSetUp))
		Expect(deleted).To(Equal(before))
	})

	It("should prefer deleting a degenerated edge", func() {
		registrar.EXPECT().CheckSetUp().Return(nil)
		before := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}
		after := sim.Collection{{Handle: h(1, 2), EdgeType: 2}}
		live := &testEdge{target: 9}
		dead := &testEdge{target: 9, degenerate: true}

		storage.EXPECT().
			Remove(before, sim.ThreadID(0), sim.EdgeTypeID(2), sim.NodeID(9),
				gomock.Any()).
			DoAndReturn(func(
				_ sim.Collection,
				_ sim.ThreadID,
				_ sim.EdgeTypeID,
				_ sim.NodeID,
				match func(sim.Edge) bool,
			) (sim.Collection, bool, error) {
				Expect(match(live)).To(BeFalse())
				Expect(match(dead)).To(BeTrue())
				Expect(match(&plainEdge{target: 9})).To(BeFalse())
				return after, true, nil
			})
		registrar.EXPECT().
			RegisterConnector(h(1, 2), h(1, 1), sim.InvalidNodeID,
				sim.ThreadID(0), sim.EdgeTypeID(2)).
			Return(nil)

		coll, err := model.DeleteConnection(9, before, 0, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(coll).To(Equal(after))
	})

	It("should fall back to the first edge to the target", func() {
		registrar.EXPECT().CheckSetUp().Return(nil)
		before := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}
		live := &testEdge{target: 9}
		calls := 0

		storage.EXPECT().
			Remove(before, sim.ThreadID(0), sim.EdgeTypeID(2), sim.NodeID(9),
				gomock.Any()).
			DoAndReturn(func(
				_ sim.Collection,
				_ sim.ThreadID,
				_ sim.EdgeTypeID,
				_ sim.NodeID,
				match func(sim.Edge) bool,
			) (sim.Collection, bool, error) {
				calls++
				if calls == 1 {
					return before, false, nil
				}

				Expect(match(live)).To(BeTrue())
				return nil, true, nil
			}).
			Times(2)
		registrar.EXPECT().
			RegisterConnector(sim.ConnectorHandle{}, h(1, 1), sim.InvalidNodeID,
				sim.ThreadID(0), sim.EdgeTypeID(2)).
			Return(nil)

		coll, err := model.DeleteConnection(9, before, 0, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(coll).To(BeEmpty())
	})

	It("should report a missing edge", func() {
		registrar.EXPECT().CheckSetUp().Return(nil)
		before := sim.Collection{{Handle: h(1, 1), EdgeType: 2}}

		storage.EXPECT().
			Remove(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
				gomock.Any()).
			Return(before, false, nil).
			Times(2)

		coll, err := model.DeleteConnection(9, before, 0, 2)

		Expect(errors.Is(err, ErrNoSuchEdge)).To(BeTrue())
		Expect(coll).To(Equal(before))
	})
})

var _ = Describe("PlainModel", func() {
	var (
		mockCtrl *gomock.Controller
		storage  *MockStorage
		model    *PlainModel
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		storage = NewMockStorage(mockCtrl)
		model = NewPlainModel(storage)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should insert without registering", func() {
		e := &plainEdge{target: 9}
		after := sim.Collection{{Handle: h(1, 1), EdgeType: 0}}

		storage.EXPECT().
			Insert(sim.Collection(nil), sim.ThreadID(0), sim.EdgeTypeID(0), e).
			Return(after, nil)

		coll, err := model.AddConnection(3, nil, 0, 0, e)

		Expect(err).NotTo(HaveOccurred())
		Expect(coll).To(Equal(after))
	})

	It("should delete the first edge to the target", func() {
		before := sim.Collection{{Handle: h(1, 1), EdgeType: 0}}

		storage.EXPECT().
			Remove(before, sim.ThreadID(0), sim.EdgeTypeID(0), sim.NodeID(9),
				gomock.Any()).
			DoAndReturn(func(
				_ sim.Collection,
				_ sim.ThreadID,
				_ sim.EdgeTypeID,
				_ sim.NodeID,
				match func(sim.Edge) bool,
			) (sim.Collection, bool, error) {
				Expect(match(&testEdge{target: 9, degenerate: false})).To(BeTrue())
				return nil, true, nil
			})

		_, err := model.DeleteConnection(9, before, 0, 0)

		Expect(err).NotTo(HaveOccurred())
	})
})
